// Package physics estimates implant/bone load transfer for painful hip
// revisions: a fixed material stiffness catalog and a Wolff's Law based stress
// assessment.
package physics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// Material catalog keys
const (
	CorticalBone   = "cortical_bone"
	CancellousBone = "cancellous_bone"
	TitaniumAlloy  = "titanium_alloy"
	CobaltChrome   = "cobalt_chrome"
	StainlessSteel = "stainless_steel"
)

// MaterialProperties describes the stiffness of an implant alloy or bone tissue.
type MaterialProperties struct {
	Name             string  `json:"name"`
	YoungsModulusGPa float64 `json:"youngs_modulus_gpa"`
	Density          float64 `json:"density"` // g/cm^3
	Citation         string  `json:"citation"`
}

// materials is never written after package initialisation.
var materials = map[string]MaterialProperties{
	CorticalBone:   {Name: "Cortical Bone", YoungsModulusGPa: 18.0, Density: 1.9, Citation: "Rho, Hobatho, Ashman 1993"},
	CancellousBone: {Name: "Cancellous Bone", YoungsModulusGPa: 1.5, Density: 0.9, Citation: "Morgan 2003"},
	TitaniumAlloy:  {Name: "Ti-6Al-4V", YoungsModulusGPa: 110.0, Density: 4.4, Citation: "Standard ASTM F136"},
	CobaltChrome:   {Name: "Co-Cr-Mo (Austin-Moore)", YoungsModulusGPa: 220.0, Density: 8.3, Citation: "Standard ASTM F75"},
	StainlessSteel: {Name: "316L SS", YoungsModulusGPa: 193.0, Density: 8.0, Citation: "Standard ASTM F138"},
}

// LookupMaterial returns the catalog entry for key.
func LookupMaterial(key string) (MaterialProperties, error) {
	m, ok := materials[key]
	if !ok {
		return MaterialProperties{}, fmt.Errorf("%w: %q", domain.ErrUnknownMaterial, key)
	}
	return m, nil
}

// MaterialKeys lists the catalog keys in sorted order.
func MaterialKeys() []string {
	keys := make([]string, 0, len(materials))
	for k := range materials {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CalculateStiffnessMismatch returns the ratio of implant to bone Young's
// modulus. Ratios above ShieldingRatioThreshold indicate stress shielding risk.
func CalculateStiffnessMismatch(materialKey, boneKey string) (float64, error) {
	mat, err := LookupMaterial(materialKey)
	if err != nil {
		return 0, fmt.Errorf("stiffness mismatch: %w", err)
	}
	bone, err := LookupMaterial(boneKey)
	if err != nil {
		return 0, fmt.Errorf("stiffness mismatch: %w", err)
	}
	return mat.YoungsModulusGPa / bone.YoungsModulusGPa, nil
}

// MaterialForImplant maps an implant description to its stem alloy.
// Austin-Moore prostheses are cobalt-chrome; everything else is assumed titanium.
func MaterialForImplant(implantType string) string {
	if strings.Contains(strings.ToLower(implantType), "austin") {
		return CobaltChrome
	}
	return TitaniumAlloy
}
