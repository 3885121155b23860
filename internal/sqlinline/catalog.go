package sqlinline

const QSelectPlanOffer = `--sql d2c5a8f1-4790-4e36-b5d8-0a61e9f3c724
select code, plan, price_cents, currency, duration_days, monthly_quota
from plan_offers
where code = $1::text
limit 1;
`

const QSelectCreditPack = `--sql 78e0d4b2-c96a-4f15-8327-b5f1c0d8e946
select code, credits, price_cents, currency
from credit_packs
where code = $1::text
limit 1;
`

const QListPlanOffers = `--sql a40c7e93-18d6-4b52-9f08-37c2d6a1e5b0
select code, plan, price_cents, currency, duration_days, monthly_quota
from plan_offers
order by price_cents asc;
`

const QListCreditPacks = `--sql 5f9b30c6-a27d-4e84-b190-64d8f3a0c5e2
select code, credits, price_cents, currency
from credit_packs
order by price_cents asc;
`
