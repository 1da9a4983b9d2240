package driver

var IndexQueries = []string{
	"CREATE INDEX ON :KnowledgeItem(id);",
	"CREATE INDEX ON :Cluster(id);",
}

const (
	SaveItemsQuery = `
		UNWIND $items AS item
		MERGE (n:KnowledgeItem {id: item.id})
		SET n.name = item.name,
			n.description = item.description,
			n.category = item.category
	`

	SaveDecisionEdgesQuery = `
		UNWIND $edges AS edge
		MERGE (a:KnowledgeItem {id: edge.source_id})
		MERGE (b:KnowledgeItem {id: edge.target_id})
		MERGE (a)-[e:DECIDED]->(b)
		SET e.is_match = edge.is_match,
			e.confidence = edge.confidence,
			e.created_at = edge.created_at
	`

	GetDecisionEdgesQuery = `
		MATCH (a:KnowledgeItem)-[e:DECIDED]->(b:KnowledgeItem)
		RETURN a.id AS source_id, b.id AS target_id,
			e.is_match AS is_match, e.confidence AS confidence, e.created_at AS created_at
		ORDER BY source_id, target_id
	`

	SaveClusterQuery = `
		MERGE (c:Cluster {id: $id})
		SET c.canonical_name = $canonical_name
		WITH c
		OPTIONAL MATCH (c)-[old:HAS_MEMBER]->()
		DELETE old
		WITH DISTINCT c
		UNWIND $members AS member_id
		MERGE (n:KnowledgeItem {id: member_id})
		MERGE (c)-[:HAS_MEMBER]->(n)
	`

	GetClustersQuery = `
		MATCH (c:Cluster)-[:HAS_MEMBER]->(n:KnowledgeItem)
		WITH c, n ORDER BY n.id
		RETURN c.id AS id, c.canonical_name AS canonical_name, collect(n.id) AS members
		ORDER BY id
	`
)
