// Package ui styles terminal output for transfer commands with lipgloss.
//
// [Palette] maps transfer statuses to colors. [RenderProgress] turns a
// [tasks.ProgressUpdate] into one line for streaming output and
// [RenderSummary] prints the final record.
package ui
