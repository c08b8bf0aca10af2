package model

// DonorWindow scopes donor aggregate queries around a session
type DonorWindow struct {
	PersonID   ID
	SessionID  ID
	DaysBefore int
	DaysAfter  int
	MinAmount  float64
	Limit      int
}

// BillQuery is one semantic bill search
type BillQuery struct {
	SessionID ID
	PersonID  ID
	Terms     []string
	Vectors   [][]float32 // nil for a lexical-only search
	MinScore  float64
	Limit     int
	Offset    int
}
