package model

// KeywordAction classifies an inbound message body.
type KeywordAction string

const (
	KeywordActionNone  KeywordAction = "none"
	KeywordActionStop  KeywordAction = "stop"
	KeywordActionHelp  KeywordAction = "help"
	KeywordActionStart KeywordAction = "start"
)
