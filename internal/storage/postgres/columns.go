package postgres

import "github.com/doug-martin/goqu/v9"

// Псевдонимы таблиц в выборках заказов.
const (
	aliasOrder     = "o"
	aliasMember    = "m"
	aliasDelivery  = "d"
	aliasOrderItem = "oi"
	aliasItem      = "i"
)

// Колонки выбираются под теги db строк fetch: имя колонки уникально в пределах выборки.

func orderColumns(t string) []interface{} {
	return []interface{}{
		goqu.T(t).Col("id").As("order_id"),
		goqu.T(t).Col("member_id").As("order_member_id"),
		goqu.T(t).Col("delivery_id").As("order_delivery_id"),
		goqu.T(t).Col("order_date").As("order_date"),
		goqu.T(t).Col("status").As("order_status"),
		goqu.T(t).Col("version").As("order_version"),
	}
}

func memberColumns(t string) []interface{} {
	return []interface{}{
		goqu.T(t).Col("id").As("member_id"),
		goqu.T(t).Col("name").As("member_name"),
		goqu.T(t).Col("city").As("member_city"),
		goqu.T(t).Col("street").As("member_street"),
		goqu.T(t).Col("zipcode").As("member_zipcode"),
	}
}

func deliveryColumns(t string) []interface{} {
	return []interface{}{
		goqu.T(t).Col("id").As("delivery_id"),
		goqu.T(t).Col("city").As("delivery_city"),
		goqu.T(t).Col("street").As("delivery_street"),
		goqu.T(t).Col("zipcode").As("delivery_zipcode"),
		goqu.T(t).Col("status").As("delivery_status"),
	}
}

func orderItemColumns(t string) []interface{} {
	return []interface{}{
		goqu.T(t).Col("id").As("order_item_id"),
		goqu.T(t).Col("order_id").As("order_item_order_id"),
		goqu.T(t).Col("item_id").As("order_item_item_id"),
		goqu.T(t).Col("order_price").As("order_item_order_price"),
		goqu.T(t).Col("count").As("order_item_count"),
	}
}

func itemColumns(t string) []interface{} {
	return []interface{}{
		goqu.T(t).Col("id").As("item_id"),
		goqu.T(t).Col("dtype").As("item_dtype"),
		goqu.T(t).Col("name").As("item_name"),
		goqu.T(t).Col("price").As("item_price"),
		goqu.T(t).Col("stock_quantity").As("item_stock_quantity"),
		goqu.T(t).Col("author").As("item_author"),
		goqu.T(t).Col("isbn").As("item_isbn"),
	}
}

func columns(groups ...[]interface{}) []interface{} {
	var result []interface{}
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
