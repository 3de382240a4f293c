package roster

import "errors"

var (
	ErrAlreadyRegistered   = errors.New("chat is already registered")
	ErrNotRegistered       = errors.New("chat is not registered")
	ErrUnknownInstitution  = errors.New("institution is not registered")
	ErrUnknownDepartment   = errors.New("institution has no such department")
	ErrInvalidGroupName    = errors.New("group name must be a single line")
	ErrGroupNameTooLong    = errors.New("group name is too long")
	ErrForbidden           = errors.New("command is not available for the role")
	ErrAlreadyLeader       = errors.New("chat is already the leader")
	ErrGroupHasLeader      = errors.New("group already has a leader")
	ErrNoGroupChat         = errors.New("group has no registered group chat")
	ErrNotEnoughGroupmates = errors.New("not enough registered groupmates")
	ErrNoGroupmates        = errors.New("no registered groupmates")
	ErrNotGroupmate        = errors.New("target chat is not a groupmate")
	ErrAdminLimitReached   = errors.New("admin to students ratio limit reached")
	ErrNoAdmins            = errors.New("group has no admins")
	ErrFeedbackTooEarly    = errors.New("feedback is accepted a week after registration")
	ErrNoInfo              = errors.New("group has no saved info")
	ErrNoEvents            = errors.New("group has no upcoming events")
	ErrEventNotFound       = errors.New("event not found")
)
