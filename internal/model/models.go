// Package model defines the records stored in the economy document.
//
// Field tags name the keys used in storage; the same tags drive decoding of
// JSON trees back into these structs.
package model

// ShopItem is an item listed in a guild shop.
type ShopItem struct {
	ID          int     `json:"id"`
	GuildID     string  `json:"guildID"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Message     string  `json:"message"`
	Description string  `json:"description"`
	// MaxAmount caps how many of the item one member may hold; 0 is no cap.
	MaxAmount int            `json:"maxAmount"`
	Role      string         `json:"role"`
	Date      int64          `json:"date"`
	Custom    map[string]any `json:"custom"`
}

// InventoryItem is a stack of one shop item held by a member.
type InventoryItem struct {
	ID          int            `json:"id"`
	ItemID      int            `json:"itemID"`
	GuildID     string         `json:"guildID"`
	MemberID    string         `json:"memberID"`
	Name        string         `json:"name"`
	Price       float64        `json:"price"`
	Message     string         `json:"message"`
	Description string         `json:"description"`
	Role        string         `json:"role"`
	Quantity    int            `json:"quantity"`
	Date        int64          `json:"date"`
	Custom      map[string]any `json:"custom"`
}

// HistoryItem records one purchase.
type HistoryItem struct {
	ID         int     `json:"id"`
	ItemID     int     `json:"itemID"`
	GuildID    string  `json:"guildID"`
	MemberID   string  `json:"memberID"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
	Role       string  `json:"role"`
	Date       int64   `json:"date"`
}

// Currency is a guild-defined currency. Balances maps member IDs to amounts.
type Currency struct {
	ID       int                `json:"id"`
	GuildID  string             `json:"guildID"`
	Name     string             `json:"name"`
	Symbol   string             `json:"symbol"`
	Balances map[string]float64 `json:"balances"`
	Custom   map[string]any     `json:"custom"`
}

// BalanceOf returns the amount member holds, 0 when absent.
func (c Currency) BalanceOf(memberID string) float64 {
	return c.Balances[memberID]
}

// UserData is the stored record of one member.
type UserData struct {
	Money     float64         `json:"money"`
	Bank      float64         `json:"bank"`
	Inventory []InventoryItem `json:"inventory"`
	History   []HistoryItem   `json:"history"`

	DailyCooldown   int64 `json:"dailyCooldown"`
	WorkCooldown    int64 `json:"workCooldown"`
	WeeklyCooldown  int64 `json:"weeklyCooldown"`
	MonthlyCooldown int64 `json:"monthlyCooldown"`
	HourlyCooldown  int64 `json:"hourlyCooldown"`
}

// NewUserData returns a fresh, zeroed member record. Every call returns a
// new value with its own slices.
func NewUserData() UserData {
	return UserData{
		Inventory: []InventoryItem{},
		History:   []HistoryItem{},
	}
}

// Cooldown returns the epoch-millisecond claim time stored for kind.
func (d UserData) Cooldown(kind RewardKind) int64 {
	switch kind {
	case RewardDaily:
		return d.DailyCooldown
	case RewardHourly:
		return d.HourlyCooldown
	case RewardWeekly:
		return d.WeeklyCooldown
	case RewardMonthly:
		return d.MonthlyCooldown
	case RewardWork:
		return d.WorkCooldown
	}
	return 0
}

// GuildData holds the guild-scoped keys of a guild record.
type GuildData struct {
	Shop       []ShopItem     `json:"shop"`
	Currencies []Currency     `json:"currencies"`
	Settings   map[string]any `json:"settings"`
}

// NewGuildData returns a fresh, empty guild record.
func NewGuildData() GuildData {
	return GuildData{
		Shop:       []ShopItem{},
		Currencies: []Currency{},
		Settings:   map[string]any{},
	}
}

// RewardKind names a claimable reward.
type RewardKind string

// Reward kinds.
const (
	RewardDaily   RewardKind = "daily"
	RewardHourly  RewardKind = "hourly"
	RewardWeekly  RewardKind = "weekly"
	RewardMonthly RewardKind = "monthly"
	RewardWork    RewardKind = "work"
)

// RewardKinds lists every reward kind.
func RewardKinds() []RewardKind {
	return []RewardKind{RewardDaily, RewardHourly, RewardWeekly, RewardMonthly, RewardWork}
}

// CooldownField is the user record key holding the last claim of kind.
func (k RewardKind) CooldownField() string {
	return string(k) + "Cooldown"
}

// Valid reports whether k is a known reward kind.
func (k RewardKind) Valid() bool {
	switch k {
	case RewardDaily, RewardHourly, RewardWeekly, RewardMonthly, RewardWork:
		return true
	}
	return false
}
