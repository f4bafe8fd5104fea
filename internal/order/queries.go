package order

const emptyCartMutation = `
  mutation EmptyCart {
    emptyCart(input: {}) {
      cart { isEmpty }
    }
  }`

const addToCartMutation = `
  mutation AddToCart($productId: Int!, $quantity: Int!) {
    addToCart(input: { productId: $productId, quantity: $quantity }) {
      cart { contents { itemCount } }
    }
  }`

const applyCouponMutation = `
  mutation ApplyCoupon($code: String!) {
    applyCoupon(input: { code: $code }) {
      cart { appliedCoupons { code } }
    }
  }`

const checkoutMutation = `
  mutation Checkout(
    $paymentMethod: String!
    $billing: CustomerAddressInput!
    $shipping: CustomerAddressInput!
    $shipToDifferentAddress: Boolean
    $customerNote: String
    $metaData: [MetaDataInput]
  ) {
    checkout(input: {
      paymentMethod: $paymentMethod
      billing: $billing
      shipping: $shipping
      shipToDifferentAddress: $shipToDifferentAddress
      customerNote: $customerNote
      metaData: $metaData
      isPaid: false
    }) {
      order { databaseId orderNumber total status }
      result
      redirect
    }
  }`

type checkoutData struct {
	Checkout *struct {
		Order    *Order `json:"order"`
		Result   string `json:"result"`
		Redirect string `json:"redirect"`
	} `json:"checkout"`
}
