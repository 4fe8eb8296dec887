package mcpserver

// CatalogSchemaContract describes the catalog data contract for LLM
// consumers.
const CatalogSchemaContract = `# Gapmap Catalog Schema

The catalog maps R&D gaps ("bottlenecks") to the foundational capabilities
that would unblock them and to the resources behind those capabilities.
It is synced from Notion and is read-only.

## Entities

| Kind       | Key fields                                                                |
|------------|---------------------------------------------------------------------------|
| bottleneck | id, name, slug, description, rank (0-5), number, field, capabilities, tags |
| capability | id, name, slug, description, rank (0-5), resources, tags                  |
| resource   | id, title, url, content, resourceTypes                                     |
| field      | id, name, description                                                      |

## Rules

1. **Slugs** are lowercase, hyphen-separated and derived from the current
   name. Renaming an entity changes its slug.
2. **Every bottleneck has exactly one field.** Gaps without a known field
   belong to the ` + "`" + `uncategorized` + "`" + ` field ("Uncategorized").
3. **Relations are nested copies**, not IDs: a bottleneck embeds its field and
   capabilities, a capability embeds its resources.
4. **Tags are names.** Tags that could not be resolved read "Unknown Tag".
5. **Rank** is an integer from 0 to 5; higher means more important.
6. Bottlenecks are ordered by ` + "`" + `number` + "`" + `, then by name.

## Tools

- ` + "`" + `search_catalog` + "`" + ` finds entities by text; ` + "`" + `kind` + "`" + ` narrows the search.
- ` + "`" + `list_fields` + "`" + ` and ` + "`" + `list_gaps` + "`" + ` enumerate fields and gaps.
- ` + "`" + `get_gap` + "`" + ` and ` + "`" + `get_capability` + "`" + ` return full nested documents by slug.
`
