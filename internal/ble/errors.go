package ble

import "errors"

// Domain-specific errors for BLE operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("ble: connection failed")

	// ErrServiceNotFound is returned when the bulb service is missing.
	ErrServiceNotFound = errors.New("ble: service not found")

	// ErrCharacteristicNotFound is returned when a requested
	// characteristic is not present on the peripheral.
	ErrCharacteristicNotFound = errors.New("ble: characteristic not found")

	// ErrNotConnected is returned when operating on a dropped connection.
	ErrNotConnected = errors.New("ble: not connected")
)
