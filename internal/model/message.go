package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is a single, immutable turn in a conversation.
type ChatMessage struct {
	ID            string        `json:"id" validate:"required,max=128"`
	Role          Role          `json:"role" validate:"required,oneof=user assistant system"`
	Content       string        `json:"content" validate:"max=100000"`
	Timestamp     time.Time     `json:"timestamp"`
	FlightResults []FlightOffer `json:"flightResults,omitempty" validate:"omitempty,dive"`
	IsStreaming   *bool         `json:"isStreaming,omitempty"`
	MemoryContext *string       `json:"memoryContext,omitempty"`
}

// FlightOffer is a priced itinerary attached to an assistant message.
type FlightOffer struct {
	ID                     string      `json:"id" validate:"required"`
	Price                  FlightPrice `json:"price"`
	Itineraries            []Itinerary `json:"itineraries" validate:"dive"`
	NumberOfBookableSeats  *int        `json:"numberOfBookableSeats,omitempty"`
	ValidatingAirlineCodes []string    `json:"validatingAirlineCodes,omitempty"`
	TravelClass            *string     `json:"travelClass,omitempty"`
	Tags                   []string    `json:"tags,omitempty"`
}

// FlightPrice is the price of a flight offer.
type FlightPrice struct {
	Total    string  `json:"total" validate:"required"`
	Currency string  `json:"currency" validate:"required"`
	Base     *string `json:"base,omitempty"`
}

// Itinerary is one direction of travel within an offer.
type Itinerary struct {
	Duration string          `json:"duration"`
	Segments []FlightSegment `json:"segments" validate:"dive"`
}

// FlightSegment is a single flight leg.
type FlightSegment struct {
	Departure     FlightEndpoint `json:"departure"`
	Arrival       FlightEndpoint `json:"arrival"`
	CarrierCode   string         `json:"carrierCode" validate:"required"`
	CarrierName   *string        `json:"carrierName,omitempty"`
	Number        string         `json:"number" validate:"required"`
	Aircraft      *string        `json:"aircraft,omitempty"`
	Duration      string         `json:"duration"`
	NumberOfStops int            `json:"numberOfStops" validate:"min=0"`
}

// FlightEndpoint is a departure or arrival point.
type FlightEndpoint struct {
	IataCode string  `json:"iataCode" validate:"required"`
	Terminal *string `json:"terminal,omitempty"`
	At       string  `json:"at" validate:"required"`
}

// AppendMessageRequest is the request to append a message to a stored conversation.
// ID is assigned by the server when omitted; the timestamp always is.
type AppendMessageRequest struct {
	ID            string        `json:"id,omitempty" validate:"omitempty,max=128"`
	Role          Role          `json:"role" validate:"required,oneof=user assistant system"`
	Content       string        `json:"content" validate:"required,max=100000"`
	FlightResults []FlightOffer `json:"flightResults,omitempty" validate:"omitempty,dive"`
	MemoryContext *string       `json:"memoryContext,omitempty"`
}
