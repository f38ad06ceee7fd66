package graph

import "fmt"

// Variable-length bounds cannot be parameters in Cypher, so hop limits are clamped and
// formatted into the text. Everything else is bound.
const maxHopLimit = 10

func clampHops(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxHopLimit {
		return maxHopLimit
	}
	return n
}

func multiHopQuery(start string, maxHops, maxResults int) Query {
	return Query{
		Name: QueryMultiHop,
		Cypher: fmt.Sprintf(`
MATCH path = (start:Entity {name: $startEntity})-[*1..%d]-(end:Entity)
WHERE start <> end
WITH end, path, length(path) AS pathLength
ORDER BY pathLength
WITH end, collect(path)[0] AS path, min(pathLength) AS pathLength
RETURN end.name AS entityName, end.type AS entityType, end.description AS description,
       pathLength,
       [n IN nodes(path) | n.name] AS pathNodes,
       [r IN relationships(path) | type(r)] AS relationshipTypes
ORDER BY pathLength, entityName
LIMIT $maxResults`, clampHops(maxHops)),
		Params: map[string]any{
			"startEntity": start,
			"maxHops":     clampHops(maxHops),
			"maxResults":  maxResults,
		},
	}
}

func findPathsQuery(a, b string, maxLen int) Query {
	return Query{
		Name: QueryFindPaths,
		Cypher: fmt.Sprintf(`
MATCH path = (e1:Entity {name: $entity1})-[*1..%d]-(e2:Entity {name: $entity2})
WITH path, length(path) AS pathLength
ORDER BY pathLength
LIMIT 10
RETURN [n IN nodes(path) | {name: n.name, type: n.type}] AS nodes,
       [r IN relationships(path) | {type: type(r), description: r.description}] AS relationships,
       pathLength`, clampHops(maxLen)),
		Params: map[string]any{
			"entity1":   a,
			"entity2":   b,
			"maxLength": clampHops(maxLen),
		},
	}
}

func communityEdgesQuery(names []string, threshold float64) Query {
	return Query{
		Name: QueryCommunityEdges,
		Cypher: `
MATCH (e1:Entity)-[r]-(e2:Entity)
WHERE e1.name IN $entityNames AND e2.name IN $entityNames AND e1.name < e2.name
  AND r.weight >= $threshold
RETURN e1.name AS entity1, e2.name AS entity2, r.weight AS weight
ORDER BY weight DESC, entity1, entity2`,
		Params: map[string]any{"entityNames": names, "threshold": threshold},
	}
}

func inducedEdgesQuery(names []string) Query {
	return Query{
		Name: QueryInducedEdges,
		Cypher: `
MATCH (a:Entity)-[r]-(b:Entity)
WHERE a.name IN $entityNames AND b.name IN $entityNames AND a.name < b.name
RETURN DISTINCT a.name AS source, b.name AS target`,
		Params: map[string]any{"entityNames": names},
	}
}

func entityNodesQuery(names []string) Query {
	return Query{
		Name: QueryEntityNodes,
		Cypher: `
MATCH (e:Entity)
WHERE e.name IN $entityNames
RETURN e.name AS name, e.type AS type`,
		Params: map[string]any{"entityNames": names},
	}
}

func entityEmbeddingsQuery(names []string) Query {
	return Query{
		Name: QueryEntityEmbeddings,
		Cypher: `
MATCH (e:Entity)
WHERE e.name IN $entityNames AND e.embedding IS NOT NULL
RETURN e.name AS name, e.embedding AS embedding`,
		Params: map[string]any{"entityNames": names},
	}
}

func subgraphNodesQuery(names []string, maxDepth int) Query {
	return Query{
		Name: QuerySubgraphNodes,
		Cypher: fmt.Sprintf(`
MATCH (e:Entity)
WHERE e.name IN $entityNames
OPTIONAL MATCH (e)-[*1..%d]-(connected:Entity)
WITH collect(DISTINCT e) + collect(DISTINCT connected) AS allNodes
UNWIND allNodes AS node
RETURN DISTINCT node.name AS name, node.type AS type, node.description AS description`, clampHops(maxDepth)),
		Params: map[string]any{"entityNames": names, "maxDepth": clampHops(maxDepth)},
	}
}

func subgraphRelationshipsQuery(names []string, maxDepth int) Query {
	return Query{
		Name: QuerySubgraphRels,
		Cypher: fmt.Sprintf(`
MATCH (e:Entity)
WHERE e.name IN $entityNames
OPTIONAL MATCH (e)-[*0..%d]-(n:Entity)
WITH collect(DISTINCT n) AS ns
UNWIND ns AS a
MATCH (a)-[r]->(b:Entity)
WHERE b IN ns
RETURN DISTINCT a.name AS source, b.name AS target, type(r) AS relationshipType,
       r.description AS description, r.weight AS weight`, clampHops(maxDepth)),
		Params: map[string]any{"entityNames": names, "maxDepth": clampHops(maxDepth)},
	}
}

func dynamicTraversalQuery(start string, relTypes []string, maxDepth, maxResults int) Query {
	if relTypes == nil {
		relTypes = []string{}
	}
	return Query{
		Name: QueryDynamicTraversal,
		Cypher: fmt.Sprintf(`
MATCH path = (start:Entity {name: $startEntity})-[rels*1..%d]-(end:Entity)
WHERE start <> end
  AND (size($relationshipTypes) = 0 OR all(r IN rels WHERE type(r) IN $relationshipTypes))
WITH end, path, length(path) AS depth
ORDER BY depth
WITH end, collect(path)[0] AS path, min(depth) AS depth
RETURN end.name AS entityName, end.type AS entityType, end.description AS description,
       depth, [n IN nodes(path) | n.name] AS pathNodes
ORDER BY depth, entityName
LIMIT $maxResults`, clampHops(maxDepth)),
		Params: map[string]any{
			"startEntity":       start,
			"relationshipTypes": relTypes,
			"maxDepth":          clampHops(maxDepth),
			"maxResults":        maxResults,
		},
	}
}

const entityRelationsLimit = 50

func entityRelationsQuery(names []string) Query {
	return Query{
		Name: QueryEntityRelations,
		Cypher: `
MATCH (e1:Entity)-[r]->(e2:Entity)
WHERE e1.name IN $entityNames OR e2.name IN $entityNames
RETURN e1.name AS entity1, type(r) AS relationship, e2.name AS entity2, r.description AS description
LIMIT $limit`,
		Params: map[string]any{"entityNames": names, "limit": entityRelationsLimit},
	}
}
