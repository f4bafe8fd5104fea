package catalog

const productFields = `
      id
      databaseId
      slug
      name
      ... on SimpleProduct {
        price
        regularPrice
        stockStatus
        productCategories { nodes { name slug } }
      }
      ... on VariableProduct {
        price
        regularPrice
        stockStatus
        attributes { nodes { name options } }
        productCategories { nodes { name slug } }
      }`

const productBySlugQuery = `
  query ProductBySlug($slug: ID!) {
    product(id: $slug, idType: SLUG) {` + productFields + `
    }
  }`

const productByDatabaseIDQuery = `
  query ProductByDatabaseId($id: ID!) {
    product(id: $id, idType: DATABASE_ID) {` + productFields + `
    }
  }`

const productsByCategoryQuery = `
  query ProductsByCategory($first: Int!, $category: String!) {
    products(first: $first, where: { category: $category }) {
      nodes {` + productFields + `
      }
    }
  }`

const testerChoicesQuery = `
  query ProductsForTestersSelection($first: Int!) {
    products(first: $first) {
      nodes {` + productFields + `
      }
    }
  }`

type nodeList[T any] struct {
	Nodes []T `json:"nodes"`
}

type productNode struct {
	ID                string               `json:"id"`
	DatabaseID        int64                `json:"databaseId"`
	Slug              string               `json:"slug"`
	Name              string               `json:"name"`
	Price             string               `json:"price"`
	RegularPrice      string               `json:"regularPrice"`
	StockStatus       string               `json:"stockStatus"`
	ProductCategories *nodeList[Category]  `json:"productCategories"`
	Attributes        *nodeList[Attribute] `json:"attributes"`
}

func (n productNode) toProduct() Product {
	p := Product{
		ID:           n.ID,
		DatabaseID:   n.DatabaseID,
		Slug:         n.Slug,
		Name:         n.Name,
		Price:        n.Price,
		RegularPrice: n.RegularPrice,
		StockStatus:  StockStatus(n.StockStatus),
	}
	if n.ProductCategories != nil {
		p.Categories = append(p.Categories, n.ProductCategories.Nodes...)
	}
	if n.Attributes != nil {
		for _, attr := range n.Attributes.Nodes {
			if len(attr.Options) > 0 {
				p.Attributes = append(p.Attributes, attr)
			}
		}
	}
	return p
}

type singleProductData struct {
	Product *productNode `json:"product"`
}

type productListData struct {
	Products *nodeList[productNode] `json:"products"`
}
