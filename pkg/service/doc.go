// Package service routes decoded command invocations to the
// commissioning state machine.
//
// The Dispatcher owns a per-channel session registry: each
// authenticated channel gets at most one commissioning session,
// created lazily on its first commissioning command and kept until the
// channel is released. Handler errors never escape as faults; every
// outcome maps to a wire status code.
package service
