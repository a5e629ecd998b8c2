/*
Package meridian provides in-memory multi-attribute range indexes for Go.

Meridian indexes a fixed collection of records, each carrying a K-dimensional
attribute vector (K is typically 2 to 5) and a MinHash signature of a text
feature, and answers three kinds of question:

  - which records fall inside an axis-aligned box (range query)
  - which of those are nearest to a given record (kNN ranking)
  - which of those have similar text (LSH banding)

# Overview

Four interchangeable structures answer range queries with identical results:

  - KDTreeIndex: binary tree splitting on one axis per level
  - HypercubeIndex: bucket trie bisecting every axis at once (2^K children)
  - RangeTreeIndex: binary tree on a primary axis with secondary-axis
    collections per node
  - RTreeIndex: nested minimum bounding boxes, bulk loaded

A fifth, ScanIndex, tests every record and serves as the reference.

# Quick Start

	package main

	import (
	    "fmt"
	    "log"

	    "github.com/wizenheimer/meridian"
	)

	func main() {
	    store, err := meridian.NewStore(2)
	    if err != nil {
	        log.Fatal(err)
	    }

	    signer, _ := meridian.NewMinHasher(meridian.DefaultSignatureSlots)
	    records, err := store.Load([]meridian.RecordDraft{
	        {Title: "A", Vector: []float64{100, 10}, Signature: signer.Sign("Action|Drama")},
	        {Title: "B", Vector: []float64{200, 20}, Signature: signer.Sign("Action|Comedy")},
	    })
	    if err != nil {
	        log.Fatal(err)
	    }

	    idx, err := meridian.BuildSpatialIndex(meridian.KDTreeIndexKind, store, records)
	    if err != nil {
	        log.Fatal(err)
	    }

	    matches, err := idx.NewSearch().
	        WithMin(50, 2).
	        WithMax(300, 25).
	        Execute()
	    if err != nil {
	        log.Fatal(err)
	    }
	    for _, r := range matches {
	        fmt.Println(r)
	    }
	}

# Records, Tombstones and Versions

The Store owns every record. Indexes hold references only, so any number of
indexes can be built over one store and discarded freely.

Records are never removed during a session. Delete sets a tombstone that every
index honours at query time. Update creates a new version with a fresh id,
tombstones the old record, links it to the new one (Record.SupersededBy) and
inserts the new version through the index's normal insert path:

	newID, err := idx.Update(id, 1, 42.0) // axis 1 becomes 42

# Range Queries

RangeQuery takes a closed Box: both bounds are inclusive on every axis, so a
record lying exactly on a face matches. Budget [50, 300] x popularity [2, 25]
therefore includes a record at (300, 5); use [50, 250] to leave it out. A box
with min > max on some axis is not an error; it matches nothing. The search
builder adds optional filtering and limits:

	results, err := idx.NewSearch().
	    WithBox(box).
	    WithFilter(meridian.NewRecordFilter(allowedIDs)).
	    WithLimit(10).
	    Execute()

# Signatures

Every signed record in a store has the same signature length,
DefaultSignatureSlots unless set with WithSignatureSlots. Records without
text may be loaded unsigned; LSH never reports them.

# Ranking and Similarity

KNNRanker ranks candidates by (optionally per-axis scaled) Euclidean distance
and never returns the target itself. LSHFilter reports candidates sharing at
least one signature band with the target, with similarity equal to the
fraction of equal signature slots. Pipeline chains the three steps:

	ranker, _ := meridian.NewScaledKNNRanker([]float64{1e6, 1, 1})
	pipeline, _ := meridian.NewPipeline(store, idx, ranker, meridian.DefaultLSHFilter())
	result, err := pipeline.NewSearch().WithBox(box).WithK(5).Execute()

# Concurrency

Nothing in this package is safe for concurrent use. Build, mutate and query
from one goroutine, with mutations strictly between queries.
*/
package meridian
