// Package config defines the crawl configuration, its defaults and
// validation, and the optional .linkcanary YAML file carrying per-site
// authentication settings.
//
// Configuration is built once from CLI flags, validated up front, and
// passed through the application by value reference. Nothing here is
// global state.
package config
