package logging

import "strings"

// FormatSubject builds the asset/stage subject string used in console output,
// for example "view.vtf (archive)".
func FormatSubject(assetName, stage string) string {
	assetName = strings.TrimSpace(assetName)
	stage = strings.TrimSpace(stage)
	switch {
	case assetName != "" && stage != "":
		return assetName + " (" + stage + ")"
	case assetName != "":
		return assetName
	default:
		return stage
	}
}
