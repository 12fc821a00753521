// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package jvc

import "sort"

// Command verbs
const (
	VerbPower            = "PW"
	VerbRemote           = "RC"
	VerbInput            = "IP"
	VerbPictureMode      = "PMPM"
	VerbInstallMode      = "INML"
	VerbMask             = "ISMA"
	VerbLaserDim         = "PMDC"
	VerbEshift           = "PMUS"
	VerbColorMode        = "IFXV"
	VerbInputLevel       = "ISIL"
	VerbContentType      = "PMCT"
	VerbContentTypeTrans = "IFCT"
	VerbLampPower        = "PMLP"
	VerbLampTime         = "IFLT"
	VerbLaserPower       = "PMLP"
	VerbAspectRatio      = "ISAS"
	VerbSourceStatus     = "SC"
	VerbSoftwareVersion  = "IFSV"
	VerbLowLatency       = "PMLL"
)

// Power state codes
const (
	PowerCodeStandby   = "0"
	PowerCodeOn        = "1"
	PowerCodeCooling   = "2"
	PowerCodeWarming   = "3"
	PowerCodeEmergency = "4"
)

// State categories. Codes follow the projector's external command reference.
var (
	PowerStates = NewCategory("power_state", VerbPower, true,
		Member{"standby", PowerCodeStandby},
		Member{"on", PowerCodeOn},
		Member{"cooling", PowerCodeCooling},
		Member{"warming", PowerCodeWarming},
		Member{"emergency", PowerCodeEmergency},
	)

	PictureModes = NewCategory("picture_mode", VerbPictureMode, false,
		Member{"film", "00"},
		Member{"cinema", "01"},
		Member{"natural", "03"},
		Member{"hdr", "04"},
		Member{"thx", "06"},
		Member{"frame_adapt_hdr", "0B"},
		Member{"user1", "0C"},
		Member{"user2", "0D"},
		Member{"user3", "0E"},
		Member{"user4", "0F"},
		Member{"user5", "10"},
		Member{"user6", "11"},
		Member{"hlg", "14"},
		Member{"hdr_plus", "15"},
		Member{"pana_pq", "16"},
		Member{"filmmaker", "17"},
		Member{"frame_adapt_hdr2", "18"},
		Member{"frame_adapt_hdr3", "19"},
	)

	InstallationModes = NewCategory("install_mode", VerbInstallMode, false,
		Member{"mode1", "0"},
		Member{"mode2", "1"},
		Member{"mode3", "2"},
		Member{"mode4", "3"},
		Member{"mode5", "4"},
		Member{"mode6", "5"},
		Member{"mode7", "6"},
		Member{"mode8", "7"},
		Member{"mode9", "8"},
		Member{"mode10", "9"},
	)

	InputModes = NewCategory("input_mode", VerbInput, false,
		Member{"hdmi1", "6"},
		Member{"hdmi2", "7"},
	)

	MaskModes = NewCategory("mask_mode", VerbMask, false,
		Member{"custom1", "0"},
		Member{"custom2", "1"},
		Member{"off", "2"},
		Member{"custom3", "3"},
	)

	LaserDimModes = NewCategory("laser_dim_mode", VerbLaserDim, false,
		Member{"off", "0"},
		Member{"auto1", "1"},
		Member{"auto2", "2"},
		Member{"auto3", "3"},
	)

	EshiftModes = NewCategory("eshift_mode", VerbEshift, false,
		Member{"off", "0"},
		Member{"on", "1"},
	)

	ColorSpaceModes = NewCategory("color_mode", VerbColorMode, true,
		Member{"rgb", "0"},
		Member{"yuv444", "1"},
		Member{"yuv422", "2"},
		Member{"yuv420", "3"},
	)

	InputLevels = NewCategory("input_level", VerbInputLevel, false,
		Member{"standard", "0"},
		Member{"enhanced", "1"},
		Member{"superwhite", "2"},
		Member{"auto", "3"},
	)

	ContentTypes = NewCategory("content_type", VerbContentType, false,
		Member{"auto", "0"},
		Member{"sdr", "1"},
		Member{"hdr10_plus", "2"},
		Member{"hdr10", "3"},
		Member{"hlg", "4"},
	)

	ContentTypeTrans = NewCategory("content_type_trans", VerbContentTypeTrans, true,
		Member{"sdr", "0"},
		Member{"hdr10_plus", "1"},
		Member{"hdr10", "2"},
		Member{"hlg", "3"},
		Member{"none", "4"},
	)

	LampPowerModes = NewCategory("lamp_power", VerbLampPower, false,
		Member{"normal", "0"},
		Member{"high", "1"},
	)

	LaserPowerModes = NewCategory("laser_power", VerbLaserPower, false,
		Member{"low", "0"},
		Member{"high", "1"},
		Member{"medium", "2"},
	)

	AspectRatioModes = NewCategory("aspect_ratio", VerbAspectRatio, false,
		Member{"zoom", "2"},
		Member{"auto", "3"},
		Member{"native", "4"},
	)

	SourceStatuses = NewCategory("source_status", VerbSourceStatus, true,
		Member{"logo", "\x00"},
		Member{"no_signal", "0"},
		Member{"signal", "1"},
	)

	LowLatencyModes = NewCategory("low_latency", VerbLowLatency, false,
		Member{"off", "0"},
		Member{"on", "1"},
	)
)

// Boolean categories
var (
	PowerOn = NewBoolCategory("is_on", VerbPower,
		[]string{PowerCodeOn},
		[]string{PowerCodeStandby, PowerCodeCooling, PowerCodeWarming, PowerCodeEmergency},
	)

	LowLatencyOn = NewBoolCategory("is_low_latency_on", VerbLowLatency,
		[]string{"1"},
		[]string{"0"},
	)
)

// Operation-only tables
var (
	PowerControl = NewCategory("power", VerbPower, false,
		Member{"off", "0"},
		Member{"on", "1"},
	)

	RemoteKeys = NewCategory("menu", VerbRemote, false,
		Member{"menu", "7320"},
		Member{"up", "7301"},
		Member{"down", "7302"},
		Member{"left", "7336"},
		Member{"right", "7334"},
		Member{"ok", "732F"},
		Member{"back", "7303"},
		Member{"info", "7374"},
		Member{"hide", "731D"},
	)
)

// Categories returns every queryable category in display order
func Categories() []*Category {
	return []*Category{
		PowerStates,
		InputModes,
		SourceStatuses,
		PictureModes,
		InstallationModes,
		MaskModes,
		LaserDimModes,
		EshiftModes,
		ColorSpaceModes,
		InputLevels,
		ContentTypes,
		ContentTypeTrans,
		LampPowerModes,
		LaserPowerModes,
		AspectRatioModes,
		LowLatencyModes,
	}
}

// CategoryByName looks up a queryable category
func CategoryByName(name string) (*Category, bool) {
	name = normalizeName(name)
	for _, c := range Categories() {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

var operationGroups = map[string]*Category{
	"power":        PowerControl,
	"menu":         RemoteKeys,
	"remote":       RemoteKeys,
	"input":        InputModes,
	"picture_mode": PictureModes,
	"install_mode": InstallationModes,
	"mask":         MaskModes,
	"laser_dim":    LaserDimModes,
	"eshift":       EshiftModes,
	"input_level":  InputLevels,
	"content_type": ContentTypes,
	"lamp_power":   LampPowerModes,
	"laser_power":  LaserPowerModes,
	"aspect_ratio": AspectRatioModes,
	"low_latency":  LowLatencyModes,
}

// OperationGroup returns the table used by ParseCommand for a group name
func OperationGroup(name string) (*Category, bool) {
	c, ok := operationGroups[normalizeName(name)]
	return c, ok
}

// OperationGroups returns the group names accepted by ParseCommand
func OperationGroups() []string {
	names := make([]string, 0, len(operationGroups))
	for name := range operationGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
