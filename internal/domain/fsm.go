package domain

// Order status finite-state machine. The table is the single source of
// truth for legal transitions; Order.Apply consults it before mutating
// anything, so an illegal event leaves the order untouched.

type statusSet map[OrderStatus]struct{}

func set(statuses ...OrderStatus) statusSet {
	s := make(statusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

var orderTransitions = map[OrderStatus]statusSet{
	OrderStatusInitialized: set(
		OrderStatusDenied,
		OrderStatusSubmitted,
		OrderStatusAccepted,
		OrderStatusRejected,
		OrderStatusCanceled,
	),
	OrderStatusSubmitted: set(
		OrderStatusRejected,
		OrderStatusCanceled,
		OrderStatusAccepted,
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
	),
	OrderStatusAccepted: set(
		OrderStatusRejected,
		OrderStatusPendingUpdate,
		OrderStatusPendingCancel,
		OrderStatusCanceled,
		OrderStatusTriggered,
		OrderStatusExpired,
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
	),
	// Pending states may self-loop (multiple concurrent requests) and may
	// revert to the previous status when the request is rejected.
	OrderStatusPendingUpdate: set(
		OrderStatusAccepted,
		OrderStatusRejected,
		OrderStatusCanceled,
		OrderStatusExpired,
		OrderStatusTriggered,
		OrderStatusPendingUpdate,
		OrderStatusPendingCancel,
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
	),
	OrderStatusPendingCancel: set(
		OrderStatusAccepted,
		OrderStatusTriggered,
		OrderStatusRejected,
		OrderStatusCanceled,
		OrderStatusExpired,
		OrderStatusPendingCancel,
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
	),
	OrderStatusTriggered: set(
		OrderStatusRejected,
		OrderStatusPendingUpdate,
		OrderStatusPendingCancel,
		OrderStatusCanceled,
		OrderStatusExpired,
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
	),
	OrderStatusPartiallyFilled: set(
		OrderStatusPendingUpdate,
		OrderStatusPendingCancel,
		OrderStatusCanceled,
		OrderStatusExpired,
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
	),
	// Terminal states have no outgoing transitions.
	OrderStatusDenied:   set(),
	OrderStatusRejected: set(),
	OrderStatusCanceled: set(),
	OrderStatusExpired:  set(),
	OrderStatusFilled:   set(),
}

// validateTransition returns an InvalidStateTrigger if from -> to is not in
// the table.
func validateTransition(from, to OrderStatus) error {
	if allowed, ok := orderTransitions[from]; ok {
		if _, ok := allowed[to]; ok {
			return nil
		}
	}
	return &InvalidStateTrigger{Status: from, Trigger: to}
}
