// Package textutil normalizes model output for single-line storage and
// bounded previews.
package textutil
