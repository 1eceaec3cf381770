package main

import (
	"fmt"

	"github.com/biogo/hts/sam"

	"github.com/grailbio/consensus/readrecord"
	"github.com/grailbio/consensus/umi"
)

// clusterKey groups reads the same way markduplicates groups read pairs into
// a duplicate set: by reference position, here combined with the read's
// (possibly corrected) molecular identifier rather than mate geometry, since
// this tool collapses a UMI family into one consensus read rather than
// marking duplicates among them.
type clusterKey struct {
	refID int
	pos   int
	umi   string
}

func (k clusterKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.refID, k.pos, k.umi)
}

// clusterer accumulates sam.Records into UMI clusters and converts each to a
// readrecord.ReadRecord lazily, once a cluster is complete.
type clusterer struct {
	tag         sam.Tag
	corrector   *umi.SnapCorrector
	flagExcl    sam.Flags
	byKey       map[clusterKey][]*sam.Record
	insertOrder []clusterKey
}

func newClusterer(umiTag string, whitelist []byte, flagExclude int) (*clusterer, error) {
	if len(umiTag) != 2 {
		return nil, fmt.Errorf("bio-consensus: umi tag must be exactly two characters, got %q", umiTag)
	}
	var tag sam.Tag
	copy(tag[:], umiTag)

	c := &clusterer{
		tag:      tag,
		flagExcl: sam.Flags(flagExclude),
		byKey:    make(map[clusterKey][]*sam.Record),
	}
	if len(whitelist) > 0 {
		c.corrector = umi.NewSnapCorrector(whitelist)
	}
	return c, nil
}

// Add files rec into its cluster, skipping reads excluded by FlagExclude or
// lacking the UMI tag entirely.
func (c *clusterer) Add(rec *sam.Record) {
	if rec.Flags&c.flagExcl != 0 {
		return
	}
	aux, ok := rec.Tag(c.tag[:])
	if !ok {
		return
	}
	rawUMI, ok := aux.Value().(string)
	if !ok {
		return
	}
	if c.corrector != nil {
		if corrected, _, ok := c.corrector.CorrectUMI(rawUMI); ok {
			rawUMI = corrected
		}
	}
	refID := -1
	if rec.Ref != nil {
		refID = rec.Ref.ID()
	}
	key := clusterKey{refID: refID, pos: rec.Pos, umi: rawUMI}
	if _, seen := c.byKey[key]; !seen {
		c.insertOrder = append(c.insertOrder, key)
	}
	c.byKey[key] = append(c.byKey[key], rec)
}

// readCluster is one UMI family's reads, ready for MajorityVotingConsensus.Vote.
type readCluster struct {
	Tag   string
	Reads []readrecord.ReadRecord
}

// Clusters returns every accumulated cluster, in the order each cluster's
// first read was seen.
func (c *clusterer) Clusters() []readCluster {
	out := make([]readCluster, 0, len(c.insertOrder))
	for _, key := range c.insertOrder {
		recs := c.byKey[key]
		reads := make([]readrecord.ReadRecord, 0, len(recs))
		for _, rec := range recs {
			reads = append(reads, convertRecord(rec))
		}
		out = append(out, readCluster{Tag: key.String(), Reads: reads})
	}
	return out
}

// convertRecord projects a biogo sam.Record onto the engine's read-only
// boundary type. refLen/queryLen bookkeeping matches readrecord.Validate.
func convertRecord(rec *sam.Record) readrecord.ReadRecord {
	var refLen int
	for _, co := range rec.Cigar {
		refLen += co.Len() * co.Type().Consumes().Reference
	}
	quals := make([]byte, len(rec.Qual))
	copy(quals, rec.Qual)
	return readrecord.ReadRecord{
		Name:    rec.Name,
		Start:   rec.Pos,
		End:     rec.Pos + refLen,
		Bases:   string(rec.Seq.Expand()),
		Cigar:   rec.Cigar,
		Quals:   quals,
		Reverse: rec.Flags&sam.Reverse != 0,
	}
}
