package orders

type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS" // declared for future use, no transition enters it
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusNew:        {StatusCompleted: true, StatusCancelled: true},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transition can leave the status.
func Terminal(s Status) bool {
	return len(validNext[s]) == 0
}
