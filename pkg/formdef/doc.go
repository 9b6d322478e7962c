// Package formdef loads form declarations from JSON or YAML files into a
// registry of compiled forms. Files hold a "forms" map keyed by form id and
// may declare "optionSets" shared by every file in the same load. The
// package also bundles the default intake forms.
package formdef
