package domutil

// CommonPriceSelectors is the fallback list tried by the static extractor's
// COMMON_SELECTOR tier (§4.3 step 4) when no site rule or structured data
// yielded a valid price. Ordered roughly by how often storefronts use them.
var CommonPriceSelectors = []string{
	".price",
	".product-price",
	".current-price",
	"[data-price]",
	".price__current",
	".price-item--sale",
	".price-item--regular",
	".product__price",
	".money",
	"[itemprop='price']",
	".woocommerce-Price-amount",
	".amount",
	".sale-price",
	".regular-price",
	".final-price",
	".offer-price",
	".price-now",
	".price-value",
	".product-single__price",
	".ProductMeta__Price",
	".price--withoutTax",
	".price--withTax",
	"[data-product-price]",
	".product_price",
	".price-box .price",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
}
