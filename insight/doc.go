// Package insight groups persisted posts into keyword themes and classifies
// them into insights.
//
// Clustering is greedy: keyword groups are visited largest first, ties broken
// lexicographically, and each unvisited keyword similar to the current seed
// is folded into its theme. Two keywords are similar when one contains the
// other or their normalized edit distance is below MaxKeywordDistance.
package insight
