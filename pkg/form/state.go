package form

// FormState summarises the whole form for renderers.
type FormState struct {
	Dirty       bool `json:"dirty"`
	Valid       bool `json:"valid"`
	Validating  bool `json:"validating"`
	Submitted   bool `json:"submitted"`
	SubmitCount int  `json:"submitCount"`
	ErrorCount  int  `json:"errorCount"`
	Records     int  `json:"records"`
}
