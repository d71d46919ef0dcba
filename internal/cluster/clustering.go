package cluster

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/fthyco/simorg/internal/kernel"
)

// MinDensityForSplit is the internal-density floor below which a
// connected component becomes a single cluster without attempting
// bipartition: 0.1 * SCALE.
const MinDensityForSplit = kernel.MinDensityForSplit

// MaxBipartitionDepth bounds the recursive bipartition attempt.
const MaxBipartitionDepth = 10

// ClusterRoles partitions the active-role subgraph of s into an ordered
// list of Clusters covering every active role exactly once. Edges
// touching an inactive role are ignored entirely.
func ClusterRoles(s kernel.OrgState) []Cluster {
	activeIDs := make([]string, 0, len(s.Roles))
	for id, r := range s.Roles {
		if r.Active {
			activeIDs = append(activeIDs, id)
		}
	}
	sort.Strings(activeIDs)

	activeSet := make(map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		activeSet[id] = true
	}

	undirected := make(map[string]map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		undirected[id] = make(map[string]bool)
	}
	var activeEdges []kernel.DependencyEdge
	for _, e := range s.Dependencies {
		if !activeSet[e.FromRoleID] || !activeSet[e.ToRoleID] {
			continue
		}
		activeEdges = append(activeEdges, e)
		if e.FromRoleID != e.ToRoleID {
			undirected[e.FromRoleID][e.ToRoleID] = true
			undirected[e.ToRoleID][e.FromRoleID] = true
		}
	}

	components := connectedComponents(activeIDs, undirected)

	var clusters []Cluster
	for _, comp := range components {
		clusters = append(clusters, bipartitionComponent(comp, activeEdges, 0)...)
	}

	sort.Slice(clusters, func(i, j int) bool {
		return compareIDLists(clusters[i].RoleIDs, clusters[j].RoleIDs) < 0
	})
	for i := range clusters {
		clusters[i].ExternalEdges = externalEdgeCount(clusters[i].RoleIDs, activeEdges)
	}
	return clusters
}

func connectedComponents(roleIDs []string, adj map[string]map[string]bool) [][]string {
	visited := make(map[string]bool, len(roleIDs))
	var components [][]string
	for _, start := range roleIDs {
		if visited[start] {
			continue
		}
		var comp []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			neighbours := make([]string, 0, len(adj[cur]))
			for n := range adj[cur] {
				neighbours = append(neighbours, n)
			}
			sort.Strings(neighbours)
			for _, n := range neighbours {
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		sort.Strings(comp)
		components = append(components, comp)
	}
	return components
}

// bipartitionComponent returns the cluster(s) produced from a single
// connected component, recursively attempting density-guided
// bipartition up to MaxBipartitionDepth.
func bipartitionComponent(comp []string, edges []kernel.DependencyEdge, depth int) []Cluster {
	if len(comp) <= 1 {
		return []Cluster{makeCluster(comp, edges)}
	}

	compDensity := subsetDensity(comp, edges)
	if compDensity < MinDensityForSplit || depth >= MaxBipartitionDepth {
		return []Cluster{makeCluster(comp, edges)}
	}

	a, b := initialSplit(comp)
	a, b = refineSplit(a, b, edges)

	densityA := subsetDensity(a, edges)
	densityB := subsetDensity(b, edges)
	if densityA+densityB > 2*compDensity {
		var out []Cluster
		out = append(out, bipartitionComponent(a, edges, depth+1)...)
		out = append(out, bipartitionComponent(b, edges, depth+1)...)
		return out
	}
	return []Cluster{makeCluster(comp, edges)}
}

// initialSplit divides the (already sorted) component at its
// lexicographic midpoint.
func initialSplit(comp []string) (a, b []string) {
	mid := len(comp) / 2
	a = append([]string(nil), comp[:mid]...)
	b = append([]string(nil), comp[mid:]...)
	return a, b
}

// refineSplit applies greedy single-vertex-move refinement: each pass
// first sweeps a in sorted order looking for an A→B move that strictly
// improves combined partition density, restarting the A-sweep from
// scratch on every accepted move; only once a full A-sweep finds no
// improving move does it fall back to a single B→A sweep. The pass
// repeats until neither sweep finds an improvement.
func refineSplit(a, b []string, edges []kernel.DependencyEdge) ([]string, []string) {
	for {
		improved := false
		currentScore := subsetDensity(a, edges) + subsetDensity(b, edges)

		for _, v := range sortedCopyStrings(a) {
			if len(a) <= 1 {
				break
			}
			candA := removeOne(a, v)
			candB := sortedAppend(b, v)
			candidateScore := subsetDensity(candA, edges) + subsetDensity(candB, edges)
			if candidateScore > currentScore {
				a, b = candA, candB
				currentScore = candidateScore
				improved = true
				break
			}
		}

		if improved {
			continue
		}

		for _, v := range sortedCopyStrings(b) {
			if len(b) <= 1 {
				break
			}
			candB := removeOne(b, v)
			candA := sortedAppend(a, v)
			candidateScore := subsetDensity(candA, edges) + subsetDensity(candB, edges)
			if candidateScore > currentScore {
				a, b = candA, candB
				currentScore = candidateScore
				improved = true
				break
			}
		}

		if !improved {
			break
		}
	}
	return sortedCopyStrings(a), sortedCopyStrings(b)
}

func sortedCopyStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sortedAppend(in []string, v string) []string {
	out := append(append([]string(nil), in...), v)
	sort.Strings(out)
	return out
}

func removeOne(list []string, v string) []string {
	out := make([]string, 0, len(list)-1)
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// subsetDensity is kernel.GlobalDensity restricted to the edges whose
// endpoints both lie in ids: edges*SCALE/(n*(n-1)) for n>=2, else 0.
func subsetDensity(ids []string, edges []kernel.DependencyEdge) int64 {
	if len(ids) < 2 {
		return 0
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	count := 0
	for _, e := range edges {
		if set[e.FromRoleID] && set[e.ToRoleID] {
			count++
		}
	}
	return kernel.GlobalDensity(len(ids), count)
}

func externalEdgeCount(roleIDs []string, edges []kernel.DependencyEdge) int {
	set := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		set[id] = true
	}
	count := 0
	for _, e := range edges {
		if set[e.FromRoleID] != set[e.ToRoleID] {
			count++
		}
	}
	return count
}

func makeCluster(ids []string, edges []kernel.DependencyEdge) Cluster {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return Cluster{
		ID:              makeClusterID(sorted),
		RoleIDs:         sorted,
		InternalDensity: subsetDensity(sorted, edges),
	}
}

// makeClusterID returns the first 16 hex characters of the SHA-256 of
// the JSON array rendering of the sorted role-id list.
func makeClusterID(sortedIDs []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range sortedIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(id)
		b.WriteByte('"')
	}
	b.WriteByte(']')
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

func compareIDLists(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// CanonicalClusterHash returns the SHA-256 (lowercase hex) of a
// deterministic canonical rendering of clusters. Identical inputs must
// produce identical hashes across implementations.
func CanonicalClusterHash(clusters []Cluster) string {
	sorted := append([]Cluster(nil), clusters...)
	sort.Slice(sorted, func(i, j int) bool {
		return compareIDLists(sorted[i].RoleIDs, sorted[j].RoleIDs) < 0
	})
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		b.WriteString(`"role_ids":[`)
		for j, id := range c.RoleIDs {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(id)
			b.WriteByte('"')
		}
		b.WriteString(`],"internal_density":`)
		b.WriteString(strconv.FormatInt(c.InternalDensity, 10))
		b.WriteString(`,"external_edges":`)
		b.WriteString(strconv.Itoa(c.ExternalEdges))
		b.WriteByte('}')
	}
	b.WriteByte(']')
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
