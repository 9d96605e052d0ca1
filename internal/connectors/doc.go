// Package connectors builds the configured document sources.
//
// Each subpackage implements driven.Connector for one source type:
// atlassian (Jira and Confluence), github and filesystem. Build turns the
// [[sources]] entries of the settings file into connectors.
package connectors
