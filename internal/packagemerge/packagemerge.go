// Package packagemerge implements Larmore/Hirschberg's package-merge
// algorithm for length-limited prefix codes. It is the explicit external
// collaborator spec.md §1 calls "the packagemerge length-limited Huffman
// utility"; this is a direct Go port of
// original_source/encoder/packagemerge.c (Stephan Brumme, 2021), kept as a
// leaf utility with no dependency on the rest of this module.
package packagemerge

import "sort"

// sortedInPlace runs the core algorithm on a histogram that the caller has
// already sorted ascending with no zero entries. It overwrites hist with
// the resulting code lengths and returns the longest code length, or 0 on
// error (matching packageMergeSortedInPlace's "0 == error" convention).
func sortedInPlace(maxLength uint8, hist []uint64) uint8 {
	numCodes := len(hist)
	if numCodes == 0 || maxLength == 0 {
		return 0
	}

	if numCodes <= 2 {
		hist[0] = 1
		if numCodes == 2 {
			hist[1] = 1
		}
		return 1
	}

	if maxLength > 63 {
		return 0
	}
	if uint64(1)<<maxLength < uint64(numCodes) {
		return 0
	}

	histogram := make([]uint64, numCodes)
	copy(histogram, hist)

	maxBuffer := 2 * numCodes
	previous := make([]uint64, maxBuffer)
	current := make([]uint64, maxBuffer)
	isMerged := make([]uint64, maxBuffer)

	copy(previous, histogram)
	numPrevious := numCodes

	numRelevant := 2*numCodes - 2

	var mask uint64 = 1
	var bits uint8
	for bits = maxLength - 1; bits > 0; bits-- {
		numPrevious &= ^1

		current[0] = histogram[0]
		current[1] = histogram[1]
		sum := current[0] + current[1]

		numCurrent := 2
		numHist := numCurrent
		numMerged := 0
		for {
			if numHist < numCodes && histogram[numHist] <= sum {
				current[numCurrent] = histogram[numHist]
				numCurrent++
				numHist++
				continue
			}

			isMerged[numCurrent] |= mask
			current[numCurrent] = sum
			numCurrent++

			numMerged++
			if numMerged*2 >= numPrevious {
				break
			}

			sum = previous[numMerged*2] + previous[numMerged*2+1]
		}

		for numHist < numCodes {
			current[numCurrent] = histogram[numHist]
			numCurrent++
			numHist++
		}

		mask <<= 1

		if numPrevious >= numRelevant {
			keepGoing := false
			for i := numRelevant - 1; i > 0; i-- {
				if previous[i] != current[i] {
					keepGoing = true
					break
				}
			}
			if !keepGoing {
				break
			}
		}

		previous, current = current, previous
		numPrevious = numCurrent
	}

	mask >>= 1

	codeLengths := hist
	for i := range codeLengths[:numCodes] {
		codeLengths[i] = 0
	}

	numAnalyze := numRelevant
	for mask != 0 {
		numMerged := 0

		codeLengths[0]++
		codeLengths[1]++
		symbol := 2

		for i := symbol; i < numAnalyze; i++ {
			if isMerged[i]&mask == 0 {
				codeLengths[symbol]++
				symbol++
			} else {
				numMerged++
			}
		}

		numAnalyze = 2 * numMerged
		mask >>= 1
	}

	for i := 0; i < numAnalyze; i++ {
		codeLengths[i]++
	}

	return uint8(codeLengths[0])
}

// Merge computes length-limited code lengths for an unsorted histogram that
// may contain zeros. codeLengths[i] is populated for every i; symbols with
// histogram[i]==0 get code length 0. Returns the code-length slice, which
// is all zeros when every histogram entry is zero or when no code of at
// most maxLength bits can hold every nonzero symbol.
func Merge(maxLength uint8, histogram []uint64) (codeLengths []uint8) {
	codeLengths = make([]uint8, len(histogram))

	type kv struct {
		key   uint64
		value int
	}
	var mapping []kv
	for i, h := range histogram {
		if h != 0 {
			mapping = append(mapping, kv{h, i})
		}
	}
	if len(mapping) == 0 {
		return codeLengths
	}

	sort.Slice(mapping, func(i, j int) bool { return mapping[i].key < mapping[j].key })

	sorted := make([]uint64, len(mapping))
	for i, m := range mapping {
		sorted[i] = m.key
	}

	if sortedInPlace(maxLength, sorted) == 0 {
		return codeLengths
	}

	for i, m := range mapping {
		codeLengths[m.value] = uint8(sorted[i])
	}
	return codeLengths
}
