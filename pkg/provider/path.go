package provider

import "strconv"

// choicePath builds the gjson/sjson path prefix for a choice index, e.g.
// "choices.0".
func choicePath(choiceIndex int) string {
	return "choices." + strconv.Itoa(choiceIndex)
}

// candidatePath builds the gjson/sjson path prefix for a Gemini/Vertex
// candidate index, e.g. "candidates.0".
func candidatePath(choiceIndex int) string {
	return "candidates." + strconv.Itoa(choiceIndex)
}
