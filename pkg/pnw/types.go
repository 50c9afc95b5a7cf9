package pnw

// Raw API shapes. Every field the API may omit is a pointer; the transform
// layers in pkg/nations and pkg/alliances apply the defaults.

// RawNation is one nation entry from the nations query.
type RawNation struct {
	ID               *string         `json:"id"`
	NationName       *string         `json:"nation_name"`
	LeaderName       *string         `json:"leader_name"`
	Discord          *string         `json:"discord"`
	AlliancePosition *string         `json:"alliance_position"`
	Alliance         *RawAllianceRef `json:"alliance"`
	NumCities        *int            `json:"num_cities"`
	Score            *float64        `json:"score"`
	Soldiers         *int            `json:"soldiers"`
	Tanks            *int            `json:"tanks"`
	Aircraft         *int            `json:"aircraft"`
	Ships            *int            `json:"ships"`
	Spies            *int            `json:"spies"`
	LastActive       *string         `json:"last_active"`
	Cities           []RawCity       `json:"cities"`
}

// RawAllianceRef is the nested alliance reference inside a nation.
type RawAllianceRef struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// RawCity is one city entry inside a nation.
type RawCity struct {
	ID             *string  `json:"id"`
	Name           *string  `json:"name"`
	Infrastructure *float64 `json:"infrastructure"`
}

// RawAlliance is one alliance entry from the alliances query.
type RawAlliance struct {
	ID          *string       `json:"id"`
	Name        *string       `json:"name"`
	Acronym     *string       `json:"acronym"`
	Color       *string       `json:"color"`
	Score       *float64      `json:"score"`
	DiscordLink *string       `json:"discord_link"`
	Positions   []RawPosition `json:"alliance_positions"`
}

// RawPosition is one alliance position entry.
type RawPosition struct {
	ID               *string `json:"id"`
	Name             *string `json:"name"`
	PositionLevel    *int    `json:"position_level"`
	Leader           *bool   `json:"leader"`
	ViewBank         *bool   `json:"view_bank"`
	WithdrawBank     *bool   `json:"withdraw_bank"`
	AcceptApplicants *bool   `json:"accept_applicants"`
	RemoveApplicants *bool   `json:"remove_applicants"`
}
