// Package capture takes screenshots by running an external command.
//
// The command writes a PNG to a temporary path that is read back into memory
// and removed before Capture returns, whether or not the command succeeded.
package capture
