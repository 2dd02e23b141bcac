// Package ui renders the styled terminal output of the wifiprov commands:
// command headers, step checklists, network tables and result boxes.
//
// Components return strings, so commands print them with fmt and tests can
// inspect them directly.
package ui
