// Package state provides a lightweight per-user session store for multi-step
// Telegram conversations. It knows nothing about the flows that use it.
package state
