package storefront

// GraphQL documents for the fixed Storefront schema. The cart read asks for
// everything the snapshot needs in one round trip: lines with merchandise,
// pricing, images, selected options, attributes, and the checkout URL.

const queryCart = `query($cartId: ID!) {
  cart(id: $cartId) {
    id
    checkoutUrl
    cost {
      totalAmount { amount }
    }
    lines(first: 20) {
      edges {
        node {
          id
          quantity
          attributes { key value }
          cost {
            totalAmount { amount }
          }
          merchandise {
            ... on ProductVariant {
              id
              title
              image { url }
              price { amount }
              selectedOptions { name value }
              product {
                id
                title
                images(first: 1) { edges { node { url } } }
                category { id name }
              }
            }
          }
        }
      }
    }
  }
}`

const mutationCartCreate = `mutation cartCreate($lines: [CartLineInput!]) {
  cartCreate(input: { lines: $lines }) {
    cart { id }
  }
}`

const mutationCartLinesAdd = `mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart { id }
  }
}`

const mutationCartLinesUpdate = `mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart { id }
  }
}`

const mutationCartLinesRemove = `mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart { id }
  }
}`

// queryProducts lists catalog products sorted by popularity. $first bounds
// the sample size; callers page only as far as the suggestion engine needs.
const queryProducts = `query($first: Int!) {
  products(first: $first, sortKey: BEST_SELLING) {
    edges {
      node {
        id
        title
        handle
        category { id name }
        priceRange { minVariantPrice { amount } }
        images(first: 1) { edges { node { url } } }
      }
    }
  }
}`
