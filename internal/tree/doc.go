// Package tree implements the static routing tree of the packed memory array.
//
// The tree is a perfect binary tree over the leaf blocks of the active range,
// stored in a flat arena in van Emde Boas order: a subtree of height h is split
// into an upper part of nextPow2(ceil(h/2)) levels (at most h-1) and a forest
// of lower subtrees, the upper part is laid out first and every lower subtree
// follows it contiguously. Nodes reference each other by int32 index.
//
// Branches route on the threshold of their pivot leaf, the leftmost leaf of
// the right subtree. Thresholds are atomic hints maintained by the engine;
// leaf 0 is pinned to Infimum so every key has a route.
package tree
