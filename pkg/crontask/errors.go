package crontask

const (
	MsgAlreadyScheduled = "this task is already scheduled. You can not chain schedule functions."
	MsgNoMode           = "No processType is set. Choose between local() or loadBalanced()"
	MsgModeAlreadySet   = "ProcessType already set => local(), loadBalanced()"
	MsgNoName           = "This task has no name. A name is mandatory."
	MsgNoSchedule       = "No schedule is set. Choose one schedule function."
	MsgNoTask           = "No task is set."
	MsgNoStore          = "No lease store is set. loadBalanced() needs a shared store."
)
