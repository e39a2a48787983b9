package domain

// Principal is the authenticated actor of a request.
type Principal struct {
	ID       string
	Username string
}

// Action names what a principal attempts on a resource.
type Action string

const (
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionPublish     Action = "publish"
	ActionAddChild    Action = "add_child"
	ActionRemoveChild Action = "remove_child"
)
