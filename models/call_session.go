package models

// CallSession is the log record of a call. Status changes come from call SDK events.
type CallSession struct {
	CallID    string   `dynamodbav:"callId" json:"callId"`
	RoomID    string   `dynamodbav:"roomId" json:"roomId"`
	CallerID  string   `dynamodbav:"callerId" json:"callerId"`
	TargetIDs []string `dynamodbav:"targetIds" json:"targetIds"` // invite order
	CallType  string   `dynamodbav:"callType" json:"callType"`
	Status    string   `dynamodbav:"status" json:"status"`
	Timestamp int64    `dynamodbav:"timestamp" json:"timestamp"`
	EndReason string   `dynamodbav:"endReason,omitempty" json:"endReason,omitempty"`
}

// IsTerminal reports whether no further status transitions are expected
func (c *CallSession) IsTerminal() bool {
	return c.Status == CallStatusEnded || c.Status == CallStatusMissed
}
