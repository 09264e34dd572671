package model

// User is either a stored member record or the absence of one. Both forms
// answer the same accessors; an absent user reads as zero balances and empty
// lists.
type User struct {
	guildID  string
	memberID string
	data     *UserData
}

// PresentUser wraps a stored record.
func PresentUser(guildID, memberID string, data UserData) User {
	return User{guildID: guildID, memberID: memberID, data: &data}
}

// AbsentUser represents a member with no stored record.
func AbsentUser(guildID, memberID string) User {
	return User{guildID: guildID, memberID: memberID}
}

// Exists reports whether the record is stored.
func (u User) Exists() bool { return u.data != nil }

func (u User) GuildID() string  { return u.guildID }
func (u User) MemberID() string { return u.memberID }

// Data returns a copy of the stored record and whether it exists.
func (u User) Data() (UserData, bool) {
	if u.data == nil {
		return NewUserData(), false
	}
	d := *u.data
	d.Inventory = append([]InventoryItem{}, d.Inventory...)
	d.History = append([]HistoryItem{}, d.History...)
	return d, true
}

func (u User) Money() float64 {
	if u.data == nil {
		return 0
	}
	return u.data.Money
}

func (u User) Bank() float64 {
	if u.data == nil {
		return 0
	}
	return u.data.Bank
}

// Inventory returns a copy of the member's inventory.
func (u User) Inventory() []InventoryItem {
	if u.data == nil {
		return []InventoryItem{}
	}
	return append([]InventoryItem{}, u.data.Inventory...)
}

// History returns a copy of the member's purchase history.
func (u User) History() []HistoryItem {
	if u.data == nil {
		return []HistoryItem{}
	}
	return append([]HistoryItem{}, u.data.History...)
}

// Cooldown returns the last claim time of kind in epoch milliseconds.
func (u User) Cooldown(kind RewardKind) int64 {
	if u.data == nil {
		return 0
	}
	return u.data.Cooldown(kind)
}

// Guild is either a stored guild record or the absence of one.
type Guild struct {
	id      string
	data    *GuildData
	members []string
}

// PresentGuild wraps a stored guild record and the IDs of its members.
func PresentGuild(id string, data GuildData, members []string) Guild {
	return Guild{id: id, data: &data, members: append([]string{}, members...)}
}

// AbsentGuild represents a guild with no stored record.
func AbsentGuild(id string) Guild {
	return Guild{id: id}
}

func (g Guild) Exists() bool { return g.data != nil }
func (g Guild) ID() string   { return g.id }

// Members returns the IDs of the guild's stored members.
func (g Guild) Members() []string {
	return append([]string{}, g.members...)
}

// Shop returns a copy of the guild shop.
func (g Guild) Shop() []ShopItem {
	if g.data == nil {
		return []ShopItem{}
	}
	return append([]ShopItem{}, g.data.Shop...)
}

// Currencies returns a copy of the guild currencies.
func (g Guild) Currencies() []Currency {
	if g.data == nil {
		return []Currency{}
	}
	return append([]Currency{}, g.data.Currencies...)
}

// Settings returns a copy of the guild settings.
func (g Guild) Settings() map[string]any {
	out := make(map[string]any)
	if g.data == nil {
		return out
	}
	for k, v := range g.data.Settings {
		out[k] = v
	}
	return out
}
