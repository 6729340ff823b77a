package models

// transitionKey identifies one row of the order transition table.
type transitionKey struct {
	Channel string
	From    string
}

// orderTransitions is the single source of truth for the order state
// machine. Missing (channel, from) keys are terminal for that channel.
var orderTransitions = map[transitionKey][]string{
	// Local rider delivery
	{ChannelLocal, OrderStatusPacked}:   {OrderStatusAssigned},
	{ChannelLocal, OrderStatusAssigned}: {OrderStatusSentForDelivery},
	{ChannelLocal, OrderStatusSentForDelivery}: {
		OrderStatusDelivered, OrderStatusRejected, OrderStatusHold,
		OrderStatusNextAttempt, OrderStatusReturnReceived, OrderStatusLostInTransit,
	},
	{ChannelLocal, OrderStatusRejected}: {
		OrderStatusNextAttempt, OrderStatusReturnReceived, OrderStatusHold,
		OrderStatusCancelled, OrderStatusRedirected,
	},
	{ChannelLocal, OrderStatusNextAttempt}: {
		OrderStatusSentForDelivery, OrderStatusAssigned, OrderStatusCancelled,
		OrderStatusHold, OrderStatusRedirected,
	},
	{ChannelLocal, OrderStatusHold}: {
		OrderStatusAssigned, OrderStatusPacked, OrderStatusCancelled, OrderStatusRedirected,
	},
	{ChannelLocal, OrderStatusReturnReceived}: {OrderStatusReturned, OrderStatusLostInTransit},
	{ChannelLocal, OrderStatusReturned}:       {OrderStatusRefunded},

	// Third-party courier delivery
	{ChannelCourier, OrderStatusPacked}: {OrderStatusDispatched},
	{ChannelCourier, OrderStatusDispatched}: {
		OrderStatusDelivered, OrderStatusReturnReceived, OrderStatusRedirected,
		OrderStatusHold, OrderStatusLostInTransit,
	},
	{ChannelCourier, OrderStatusRedirected}: {
		OrderStatusDispatched, OrderStatusCancelled, OrderStatusHold, OrderStatusLostInTransit,
	},
	{ChannelCourier, OrderStatusHold}: {
		OrderStatusDispatched, OrderStatusPacked, OrderStatusCancelled, OrderStatusRedirected,
	},
	{ChannelCourier, OrderStatusReturnReceived}: {OrderStatusReturned, OrderStatusLostInTransit},
	{ChannelCourier, OrderStatusReturned}:       {OrderStatusRefunded},

	// Point of sale
	{ChannelPOS, OrderStatusPacked}:         {OrderStatusDelivered, OrderStatusCancelled, OrderStatusHold},
	{ChannelPOS, OrderStatusDelivered}:      {OrderStatusReturnReceived, OrderStatusExchanged},
	{ChannelPOS, OrderStatusHold}:           {OrderStatusPacked, OrderStatusCancelled},
	{ChannelPOS, OrderStatusReturnReceived}: {OrderStatusReturned},
	{ChannelPOS, OrderStatusReturned}:       {OrderStatusRefunded},
}

// channelStatuses limits each channel to its own status vocabulary.
// A local order can never take a courier-only status and vice versa,
// regardless of what the transition table would otherwise allow.
var channelStatuses = map[string]map[string]bool{
	ChannelLocal: statusSet(
		OrderStatusPacked, OrderStatusAssigned, OrderStatusSentForDelivery,
		OrderStatusDelivered, OrderStatusRejected, OrderStatusHold, OrderStatusNextAttempt,
		OrderStatusReturnReceived, OrderStatusReturned, OrderStatusRedirected,
		OrderStatusRefunded, OrderStatusCancelled, OrderStatusLostInTransit,
	),
	ChannelCourier: statusSet(
		OrderStatusPacked, OrderStatusDispatched, OrderStatusDelivered,
		OrderStatusReturnReceived, OrderStatusReturned, OrderStatusRedirected,
		OrderStatusHold, OrderStatusRefunded, OrderStatusCancelled, OrderStatusLostInTransit,
	),
	ChannelPOS: statusSet(
		OrderStatusPacked, OrderStatusDelivered, OrderStatusCancelled, OrderStatusHold,
		OrderStatusReturnReceived, OrderStatusReturned, OrderStatusExchanged, OrderStatusRefunded,
	),
}

// terminalStatuses accept no transition without an explicit override.
var terminalStatuses = map[string]bool{
	OrderStatusDelivered:     true,
	OrderStatusRefunded:      true,
	OrderStatusExchanged:     true,
	OrderStatusCancelled:     true,
	OrderStatusReturned:      true,
	OrderStatusLostInTransit: true,
}

func statusSet(statuses ...string) map[string]bool {
	set := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

// IsTerminalOrderStatus reports whether the status accepts no further
// transition without override. POS delivered is the exception: the
// exchange/return window stays open.
func IsTerminalOrderStatus(channel, status string) bool {
	if channel == ChannelPOS && status == OrderStatusDelivered {
		return false
	}
	return terminalStatuses[status]
}

// ValidOrderStatus reports whether the status belongs to the channel's
// vocabulary at all.
func ValidOrderStatus(channel, status string) bool {
	set, ok := channelStatuses[channel]
	return ok && set[status]
}

// CanTransitionOrder is the single guard behind every order status
// mutation. It never consults anything but the table, so the result is
// the same no matter which operation asks.
func CanTransitionOrder(channel, from, to string) error {
	if !ValidOrderStatus(channel, to) {
		return &InvalidTransitionError{Channel: channel, From: from, To: to}
	}
	if IsTerminalOrderStatus(channel, from) {
		return &InvalidTransitionError{Channel: channel, From: from, To: to}
	}
	for _, allowed := range orderTransitions[transitionKey{channel, from}] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{Channel: channel, From: from, To: to}
}

// AllowedOrderTransitions returns the documented to-statuses for a
// (channel, from) pair. Empty for terminal or unknown states.
func AllowedOrderTransitions(channel, from string) []string {
	if IsTerminalOrderStatus(channel, from) {
		return nil
	}
	return orderTransitions[transitionKey{channel, from}]
}

// leadTransitions drives the sales pipeline. CONVERTED and CANCELLED are
// terminal; the privileged restore path bypasses this table explicitly.
var leadTransitions = map[string][]string{
	LeadStatusIntake:   {LeadStatusFollowUp, LeadStatusBusy, LeadStatusCancelled, LeadStatusConverted},
	LeadStatusFollowUp: {LeadStatusFollowUp, LeadStatusBusy, LeadStatusCancelled, LeadStatusConverted},
	LeadStatusBusy:     {LeadStatusFollowUp, LeadStatusCancelled, LeadStatusConverted},
}

// IsTerminalLeadStatus reports whether the lead is closed.
func IsTerminalLeadStatus(status string) bool {
	return status == LeadStatusConverted || status == LeadStatusCancelled
}

// CanTransitionLead guards lead pipeline mutations.
func CanTransitionLead(from, to string) error {
	for _, allowed := range leadTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{Channel: "lead", From: from, To: to}
}

// DispatchStatus is the status an order takes when it joins a manifest.
func DispatchStatus(channel string) string {
	if channel == ChannelCourier {
		return OrderStatusDispatched
	}
	return OrderStatusAssigned
}

// RedirectableOrderStatuses are the failed-delivery states a redirect
// may start from.
var RedirectableOrderStatuses = map[string]bool{
	OrderStatusRejected:    true,
	OrderStatusHold:        true,
	OrderStatusNextAttempt: true,
}

// RTOPendingStatuses are the states return verification accepts.
var RTOPendingStatuses = map[string]bool{
	OrderStatusReturnReceived: true,
}

// LossEligibleStatuses are the in-transit or RTO states MarkLost accepts.
var LossEligibleStatuses = map[string]bool{
	OrderStatusSentForDelivery: true,
	OrderStatusDispatched:      true,
	OrderStatusReturnReceived:  true,
	OrderStatusRedirected:      true,
}
