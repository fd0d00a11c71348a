package evo

// MonitorCommand is consumed by a running Monitor at the end of a generation.
type MonitorCommand string

const (
	CommandPause    MonitorCommand = "pause"
	CommandContinue MonitorCommand = "continue"
	CommandStop     MonitorCommand = "stop"
)

// StopReason records why Monitor.Run returned.
type StopReason string

const (
	StopCancelled       StopReason = "cancelled"
	StopHook            StopReason = "stop_hook"
	StopCommand         StopReason = "stop_command"
	StopGenerationLimit StopReason = "generation_limit"
	StopFailed          StopReason = "failed"
)
