package analysis

import "slices"

// Family groups related analysis methods. The set of families is closed.
type Family string

const (
	FamilyTemporal      Family = "temporal"
	FamilySpectral      Family = "spectral"
	FamilyTimeFrequency Family = "time_frequency"
	FamilyModulation    Family = "modulation"
	FamilyInformation   Family = "information"
	FamilyInterChannel  Family = "inter_channel"
	FamilySteganography Family = "steganography"
	FamilyMetaAnalysis  Family = "meta_analysis"
)

var knownFamilies = []Family{
	FamilyTemporal,
	FamilySpectral,
	FamilyTimeFrequency,
	FamilyModulation,
	FamilyInformation,
	FamilyInterChannel,
	FamilySteganography,
	FamilyMetaAnalysis,
}

// Families returns the closed family set in canonical order.
func Families() []Family {
	return slices.Clone(knownFamilies)
}

// Known reports whether f belongs to the closed family set.
func (f Family) Known() bool {
	return slices.Contains(knownFamilies, f)
}

func (f Family) String() string { return string(f) }
