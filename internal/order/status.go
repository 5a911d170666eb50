package order

// 注文ステータス。
const (
	// StatusPending は注文直後、レストランの受付待ち。
	StatusPending = "PENDING"
	// StatusPreparing はレストランが調理中。
	StatusPreparing = "PREPARING"
	// StatusReady は調理完了、配達パートナーの引き受け待ち。
	StatusReady = "READY"
	// StatusOutForDelivery は配達パートナーが配達中。
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	// StatusDelivered は配達完了。終端ステータス。
	StatusDelivered = "DELIVERED"
	// StatusCancelled はキャンセル済み。終端ステータス。
	StatusCancelled = "CANCELLED"
)

// transitions は許可されたステータス遷移。
// DELIVEREDとCANCELLEDは終端であり、そこからの遷移は存在しない。
var transitions = map[string][]string{
	StatusPending:        {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

// ValidStatus はsが既知の注文ステータスかどうかを返す。
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition はfromからtoへのステータス遷移が許可されているかを返す。
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal はsが終端ステータスかどうかを返す。
func Terminal(s string) bool {
	return s == StatusDelivered || s == StatusCancelled
}
