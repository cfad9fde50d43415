package types

// Version is the canonical project version. The CLI, the recording
// format, and the notification payload share this version in lockstep.
const Version = "0.3.0"
