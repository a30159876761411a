/*
Package observability provides tools for monitoring guarded calls.

It turns the guard's lifecycle hooks into prometheus collectors: a counter of
checks by outcome, a counter of violations by rule and a histogram of check
durations. Register the collectors once and pass Hooks to contract.WithHooks.

JournalHooks keeps every violation in a ports.Journal (memory or Redis) so
that failures can be listed after the fact, correlated by call id.
*/
package observability
