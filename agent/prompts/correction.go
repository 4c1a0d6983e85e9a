package prompts

import "fmt"

// FormatCorrectionPrompt tells the model its previous response could not be
// used and restates the expected top-level keys.
func FormatCorrectionPrompt(err error, keys []string) string {
	return fmt.Sprintf(
		"Your response could not be used. Error: %s\n\n"+
			"Please respond with ONLY a valid JSON object with the top-level keys %q, following the format given in the instructions.",
		err.Error(), keys,
	)
}
