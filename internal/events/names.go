package events

import "time"

// Name identifies an event.
type Name string

// Events emitted after successful mutations.
const (
	BalanceSet      Name = "balanceSet"
	BalanceAdd      Name = "balanceAdd"
	BalanceSubtract Name = "balanceSubtract"

	BankSet      Name = "bankSet"
	BankAdd      Name = "bankAdd"
	BankSubtract Name = "bankSubtract"

	CurrencySet      Name = "customCurrencySet"
	CurrencyAdd      Name = "customCurrencyAdd"
	CurrencySubtract Name = "customCurrencySubtract"

	ShopItemAdd    Name = "shopItemAdd"
	ShopItemRemove Name = "shopItemRemove"
	ShopItemEdit   Name = "shopItemEdit"
	ShopItemBuy    Name = "shopItemBuy"
	ShopItemUse    Name = "shopItemUse"
	ShopClear      Name = "shopClear"

	Ready   Name = "ready"
	Destroy Name = "destroy"
)

// BalanceEvent is the payload of the balance* and bank* events.
type BalanceEvent struct {
	Type     Name
	GuildID  string
	MemberID string
	// Amount is the value passed to the operation; Balance is the stored
	// value after it.
	Amount  float64
	Balance float64
	Reason  string
}

// CurrencyEvent is the payload of the customCurrency* events.
type CurrencyEvent struct {
	Type       Name
	GuildID    string
	MemberID   string
	CurrencyID int
	Amount     float64
	Balance    float64
	Reason     string
}

// ShopEvent is the payload of the shop* events. Item is nil for shopClear.
type ShopEvent struct {
	Type     Name
	GuildID  string
	MemberID string
	Item     any
	Quantity int
	// Property and Value describe an edit.
	Property string
	Value    any
}

// LifecycleEvent is the payload of ready and destroy.
type LifecycleEvent struct {
	Type   Name
	Engine string
	At     time.Time
}
