// Package jira implements the issue tracker integration: fetching issues
// into the pipeline, mirroring stage transitions back, posting run
// reports as comments, and validating inbound webhooks.
//
// The client supports Jira Cloud (REST v3, ADF bodies) and Server/Data
// Center (REST v2, plain text bodies) behind one API.
package jira
