// Package smc estimates the probability that random runs of a Channel System
// satisfy an MTL property.
//
// The number of runs comes from the Chernoff-Hoeffding bound: with
// n = RequiredRuns(c, p) independent runs, the observed success rate is
// within p of the true probability with confidence at least c.
//
// Runs are executed by a dispatch.Pool. Run i draws its randomness from
// stream i of the session seed, so a report depends on the seed and the
// model only, never on the number of workers.
package smc
