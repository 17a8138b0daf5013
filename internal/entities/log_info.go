package entities

// LogInfo summarizes the durable log: retained entry count and the sequence
// range currently held. FirstSeq/LastSeq are 0 when the log is empty.
type LogInfo struct {
	Length   int    `json:"length"`
	FirstSeq uint64 `json:"firstSequence"`
	LastSeq  uint64 `json:"lastSequence"`
}
