// Package retrieval defines the document client contract and the jobs that
// adapt it to the task runner.
//
// The real NF-e and NFS-e clients live outside this repository; builds that
// have one inject it through the Client interface. Simulated stands in for
// them in demo mode and in tests.
package retrieval
