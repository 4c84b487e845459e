package metrics

// NodeMetric holds the computed metrics of one function.
type NodeMetric struct {
	Name        string  `json:"name" toon:"name" yaml:"name"`
	InDegree    int     `json:"in_degree" toon:"in_degree" yaml:"in_degree"`
	OutDegree   int     `json:"out_degree" toon:"out_degree" yaml:"out_degree"`
	Betweenness float64 `json:"betweenness" toon:"betweenness" yaml:"betweenness"`
	PageRank    float64 `json:"pagerank" toon:"pagerank" yaml:"pagerank"`
}

// Degree returns in-degree plus out-degree.
func (m NodeMetric) Degree() int {
	return m.InDegree + m.OutDegree
}

// PageRankStats describes how the PageRank iteration ended.
type PageRankStats struct {
	Damping       float64 `json:"damping" toon:"damping" yaml:"damping"`
	Tolerance     float64 `json:"tolerance" toon:"tolerance" yaml:"tolerance"`
	MaxIterations int     `json:"max_iterations" toon:"max_iterations" yaml:"max_iterations"`
	Iterations    int     `json:"iterations" toon:"iterations" yaml:"iterations"`
	Residual      float64 `json:"residual" toon:"residual" yaml:"residual"`
	Converged     bool    `json:"converged" toon:"converged" yaml:"converged"`
	// Approximate is set when the iteration cap was reached first; the ranks
	// are the last iterate.
	Approximate bool `json:"approximate" toon:"approximate" yaml:"approximate"`
}

// Metrics is the per-node metric set of one graph, in graph node order.
type Metrics struct {
	Nodes    []NodeMetric  `json:"nodes" toon:"nodes" yaml:"nodes"`
	PageRank PageRankStats `json:"pagerank" toon:"pagerank" yaml:"pagerank"`
}

// Lookup returns the metric record of the named node.
func (m *Metrics) Lookup(name string) (NodeMetric, bool) {
	for _, n := range m.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeMetric{}, false
}
