// Package platform declares the interfaces the bootloader core consumes
// from its host environment: flash access, removable media, file I/O, user
// interaction and firmware launch. None of these are implemented here —
// concrete targets (a real board, the in-memory simulator in
// package simplatform) provide Services.
package platform

// Addr is an absolute address in the device's address space (flash,
// mailbox, or similar memory-mapped region).
type Addr uint64

// FlashMapItem identifies an entry of the flash memory map.
type FlashMapItem int

const (
	FirmwareBase FlashMapItem = iota
	FirmwareSize
	BootloaderImageBase
	BootloaderCopy1Base
	BootloaderCopy2Base
	BootloaderSize
	nFlashMapItems
)

// AlertType classifies a user-facing alert.
type AlertType int

const (
	AlertInfo AlertType = iota
	AlertWarning
	AlertError
)

// AlertStatus reports how an alert was dismissed.
type AlertStatus int

const (
	AlertTerminated AlertStatus = iota
	AlertDismissed
)

// Forever requests an alert that blocks until the user dismisses it.
const Forever uint32 = 0xFFFFFFFF
