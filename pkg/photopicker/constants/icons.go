package constants

// Badge glyphs for icon fonts (Material Design Icons) shown on grid cells.
// The host renders them; the core only decides which one applies.
const (
	BadgeNone     = ""
	BadgeVideo    = "\U000F0567" // Video camera
	BadgeCloud    = "\U000F0162" // Cloud with download arrow, asset not on device
	BadgeCloudErr = "\U000F09E0" // Cloud with warning, last download failed
	BadgeDisabled = "\U000F0730" // Cancel circle, selection not allowed
)
