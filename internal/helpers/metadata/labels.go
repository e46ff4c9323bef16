package metadata

const (
	LabelManaged   = "io.poanet.managed"
	LabelCluster   = "io.poanet.cluster"
	LabelNode      = "io.poanet.node"
	LabelSession   = "io.poanet.session"
	LabelLaunched  = "io.poanet.launched"
	LabelValidator = "io.poanet.validator"
)

// ClusterLabels marks runtime resources owned by cluster.
func ClusterLabels(cluster string) map[string]string {
	p := GetProvider()
	return map[string]string{
		LabelManaged:  "true",
		LabelCluster:  cluster,
		LabelSession:  p.SessionID(),
		LabelLaunched: p.FormattedLaunchTime(),
	}
}

func NodeLabels(cluster, node string, validator bool) map[string]string {
	role := "false"
	if validator {
		role = "true"
	}
	return ExtendLabels(ClusterLabels(cluster), map[string]string{
		LabelNode:      node,
		LabelValidator: role,
	})
}

// ClusterFilter selects resources of one cluster regardless of session.
func ClusterFilter(cluster string) map[string]string {
	return map[string]string{
		LabelManaged: "true",
		LabelCluster: cluster,
	}
}

func ExtendLabels(existing map[string]string, extra map[string]string) map[string]string {
	result := make(map[string]string, len(existing)+len(extra))
	for k, v := range existing {
		result[k] = v
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}
